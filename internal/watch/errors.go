// watch/errors.go
package watch

import "errors"

// 定义公共错误变量
var (
	ErrRuleExists       = errors.New("rule already exists")
	ErrRuleIndexRange   = errors.New("rule index out of range")
	ErrNoKeyword        = errors.New("no keyword provided")
	ErrSentinelMixed    = errors.New("sentinel keyword cannot be mixed with literals")
	ErrTargetExists     = errors.New("notify target already exists")
	ErrTargetNotFound   = errors.New("notify target not found")
	ErrAdminExists      = errors.New("admin already exists")
	ErrAdminNotFound    = errors.New("admin not found")
	ErrSuperAdmin       = errors.New("super admin is managed by configuration")
	ErrCoordinatorState = errors.New("coordinator is not in a startable state")
)
