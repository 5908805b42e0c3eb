// Package upstream 将工具调用翻译为对上游 REST 服务的 HTTP 请求。
//
// 它包含三层：Transport 负责带超时的单次 HTTP 交换；编码器把有序参数序列化为
// 查询、表单或 multipart 请求体；Client 把每个操作映射到端点与编码方式，并把
// 上游 JSON 原样（保持键顺序）以缩进文本返回。所有类型在构造后均为只读，可并发使用。
package upstream
