package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	xerrors "PumpMCP/internal/errors"
)

// arguments 读取调用参数：缺失的参数取默认值，存在但类型不符的参数记为错误，
// 在任何上游请求之前统一返回 INVALID_INPUT。
type arguments struct {
	req     mcp.CallToolRequest
	values  map[string]any
	invalid []string
	causes  []string
}

func newArguments(req mcp.CallToolRequest) *arguments {
	return &arguments{req: req, values: req.GetArguments()}
}

func (a *arguments) present(name string) bool {
	v, ok := a.values[name]
	return ok && v != nil
}

func (a *arguments) reject(name, want string, err error) {
	a.invalid = append(a.invalid, name)
	a.causes = append(a.causes, fmt.Sprintf("%s must be %s (%v)", name, want, err))
}

// str 返回字符串参数；缺失时返回 def，由门面的必填校验处理空值。
func (a *arguments) str(name, def string) string {
	if !a.present(name) {
		return def
	}
	v, err := a.req.RequireString(name)
	if err != nil {
		a.reject(name, "a string", err)
		return def
	}
	return v
}

func (a *arguments) float(name string, def float64) float64 {
	if v := a.optionalFloat(name); v != nil {
		return *v
	}
	return def
}

// optionalFloat 区分参数缺失（返回 nil）与取值为 0。
func (a *arguments) optionalFloat(name string) *float64 {
	if !a.present(name) {
		return nil
	}
	v, err := a.req.RequireFloat(name)
	if err != nil {
		a.reject(name, "a number", err)
		return nil
	}
	return &v
}

func (a *arguments) boolean(name string, def bool) bool {
	if !a.present(name) {
		return def
	}
	switch v := a.values[name].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	a.reject(name, "a boolean", fmt.Errorf("got %T", a.values[name]))
	return def
}

func (a *arguments) err() error {
	if len(a.invalid) == 0 {
		return nil
	}
	return xerrors.New(xerrors.CodeInvalidInput,
		"invalid argument type: "+strings.Join(a.causes, "; "),
		xerrors.WithMetadata("fields", strings.Join(a.invalid, ",")))
}
