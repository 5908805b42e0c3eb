package upstream

import (
	"bytes"
	"encoding/json"

	xerrors "PumpMCP/internal/errors"
)

// Result 保存上游返回的 JSON，不绑定固定结构。
type Result struct {
	raw json.RawMessage
}

// ParseResult 校验响应体为合法 JSON，否则返回携带原始响应体的 MALFORMED_RESPONSE。
func ParseResult(body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Result{}, xerrors.New(xerrors.CodeMalformedResponse, "upstream response is not valid JSON",
			xerrors.WithBody(body))
	}
	return Result{raw: append(json.RawMessage(nil), trimmed...)}, nil
}

// Raw 返回去除首尾空白后的原始 JSON。
func (r Result) Raw() json.RawMessage {
	return r.raw
}

// Text 返回两空格缩进的 JSON，键顺序与上游一致。
func (r Result) Text() string {
	if len(r.raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.raw, "", "  "); err != nil {
		return string(r.raw)
	}
	return buf.String()
}

// Tree 把响应解码为无类型 JSON 树，数字保留为 json.Number。
func (r Result) Tree() (any, error) {
	var tree any
	if err := r.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Decode 将响应解码到 v。
func (r Result) Decode(v any) error {
	decoder := json.NewDecoder(bytes.NewReader(r.raw))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return xerrors.Wrap(xerrors.CodeMalformedResponse, err, "decode upstream response", xerrors.WithBody(r.raw))
	}
	return nil
}
