package main

import (
	"log"
)

func main() {
	log.Println("[Main] 关键词监听网关启动中...")

	runner := NewApplicationRunner()
	runner.Run()

	log.Println("[Main] 关键词监听网关已停止")
}
