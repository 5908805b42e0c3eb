// Package tools 把上游调度门面注册为 MCP 工具。
//
// 每个工具声明参数模式（必填项、默认值、枚举与注解），处理函数负责从调用请求中
// 取出参数、构造请求结构并交给 upstream.Client；结果以缩进 JSON 文本返回，
// 任何失败都转换为协议层的错误结果。调用计时、指标与审计在统一的包装函数中完成。
package tools
