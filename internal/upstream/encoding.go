package upstream

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	xerrors "PumpMCP/internal/errors"
	"PumpMCP/pkg/logger"
)

const (
	// ContentTypeForm 是表单编码请求体的 Content-Type。
	ContentTypeForm = "application/x-www-form-urlencoded"
	// DefaultFileContentType 在无法根据扩展名推断类型时使用。
	DefaultFileContentType = "application/octet-stream"
	// DefaultMaxFileBytes 是 multipart 上传文件的默认大小上限。
	DefaultMaxFileBytes int64 = 10 << 20
)

// Field 是一个按调用方顺序编码的参数。Value 为 nil（或 nil 指针）时不会被发送。
type Field struct {
	Name  string
	Value any
}

// FilePart 引用一个需要作为 multipart 文件部分上传的本地文件。
type FilePart struct {
	Field string
	Path  string
}

// Request 描述编码完成、可直接交给 Transport 的请求。
type Request struct {
	Method      string
	ContentType string
	Body        []byte
}

type filePayload struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

// EncodeQuery 用于无参数调用：不带请求体的 GET。
func EncodeQuery() Request {
	return Request{Method: http.MethodGet}
}

// EncodeForm 按 application/x-www-form-urlencoded 编码参数，保持调用方顺序。
func EncodeForm(fields []Field) Request {
	var builder strings.Builder
	for _, field := range fields {
		value, ok := FormatValue(field.Value)
		if !ok {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(url.QueryEscape(field.Name))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(value))
	}
	return Request{
		Method:      http.MethodPost,
		ContentType: ContentTypeForm,
		Body:        []byte(builder.String()),
	}
}

// EncodeMultipart 构建 multipart/form-data 请求体：先写文本字段，再写文件。
// 文件在任何网络调用之前被完整读入内存，超过 maxFileBytes（<=0 表示不限制）时失败。
func EncodeMultipart(fields []Field, files []FilePart, maxFileBytes int64) (Request, error) {
	payloads := make([]filePayload, 0, len(files))
	for _, file := range files {
		payload, err := readFilePart(file, maxFileBytes)
		if err != nil {
			return Request{}, err
		}
		payloads = append(payloads, payload)
	}

	type textPart struct{ name, value string }
	texts := make([]textPart, 0, len(fields))
	contents := make([][]byte, 0, len(fields)+len(payloads))
	for _, field := range fields {
		value, ok := FormatValue(field.Value)
		if !ok {
			continue
		}
		texts = append(texts, textPart{name: field.Name, value: value})
		contents = append(contents, []byte(value))
	}
	for _, payload := range payloads {
		contents = append(contents, payload.content)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(newBoundary(contents)); err != nil {
		return Request{}, xerrors.Wrap(xerrors.CodeUnknown, err, "set multipart boundary")
	}

	for _, text := range texts {
		if err := writer.WriteField(text.name, text.value); err != nil {
			return Request{}, xerrors.Wrap(xerrors.CodeUnknown, err, "write multipart field")
		}
	}
	for _, payload := range payloads {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(payload.field), escapeQuotes(payload.filename)))
		header.Set("Content-Type", payload.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return Request{}, xerrors.Wrap(xerrors.CodeUnknown, err, "create multipart file part")
		}
		if _, err := part.Write(payload.content); err != nil {
			return Request{}, xerrors.Wrap(xerrors.CodeUnknown, err, "write multipart file part")
		}
	}
	if err := writer.Close(); err != nil {
		return Request{}, xerrors.Wrap(xerrors.CodeUnknown, err, "close multipart body")
	}

	return Request{
		Method:      http.MethodPost,
		ContentType: writer.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// newBoundary 返回 128 位随机十六进制串，且保证不出现在任何部分内容中。
func newBoundary(contents [][]byte) string {
	for {
		id := uuid.New()
		boundary := hex.EncodeToString(id[:])
		clash := false
		for _, content := range contents {
			if bytes.Contains(content, []byte(boundary)) {
				clash = true
				break
			}
		}
		if !clash {
			return boundary
		}
	}
}

func readFilePart(part FilePart, maxBytes int64) (filePayload, error) {
	path := strings.TrimSpace(part.Path)
	if path == "" {
		return filePayload{}, xerrors.New(xerrors.CodeInvalidInput, "file path is empty",
			xerrors.WithMetadata("field", part.Field))
	}
	filename := filepath.Base(path)
	if strings.ContainsAny(filename, "\r\n") {
		return filePayload{}, xerrors.New(xerrors.CodeInvalidInput, "file name contains a line break",
			xerrors.WithMetadata("field", part.Field))
	}

	file, err := os.Open(path)
	if err != nil {
		return filePayload{}, xerrors.Wrap(xerrors.CodeInvalidInput, err, fmt.Sprintf("cannot open file %s", path),
			xerrors.WithMetadata("path", path))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return filePayload{}, xerrors.Wrap(xerrors.CodeInvalidInput, err, fmt.Sprintf("cannot stat file %s", path),
			xerrors.WithMetadata("path", path))
	}
	if info.IsDir() {
		return filePayload{}, xerrors.New(xerrors.CodeInvalidInput, fmt.Sprintf("%s is a directory", path),
			xerrors.WithMetadata("path", path))
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return filePayload{}, tooLarge(path, maxBytes)
	}

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return filePayload{}, xerrors.Wrap(xerrors.CodeInvalidInput, err, fmt.Sprintf("cannot read file %s", path),
			xerrors.WithMetadata("path", path))
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return filePayload{}, tooLarge(path, maxBytes)
	}

	contentType := ContentTypeFor(filename)
	if detected := mimetype.Detect(content); contentType != DefaultFileContentType && !detected.Is(contentType) {
		logger.Named("upstream").Debug("upload content does not match its extension",
			"file", filename, "declared", contentType, "detected", detected.String())
	}

	return filePayload{
		field:       part.Field,
		filename:    filename,
		contentType: contentType,
		content:     content,
	}, nil
}

func tooLarge(path string, maxBytes int64) error {
	return xerrors.New(xerrors.CodeInvalidInput,
		fmt.Sprintf("file %s exceeds the upload limit of %d bytes", path, maxBytes),
		xerrors.WithMetadata("path", path))
}

// ContentTypeFor 根据文件扩展名推断 MIME 类型，去掉参数部分，未知时返回
// application/octet-stream。
func ContentTypeFor(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return DefaultFileContentType
	}
	guessed := mime.TypeByExtension(ext)
	if guessed == "" {
		return DefaultFileContentType
	}
	if mediaType, _, err := mime.ParseMediaType(guessed); err == nil {
		return mediaType
	}
	return guessed
}

// FormatValue 把标量转换为规范文本。bool 为小写 true/false；整数为十进制；
// 浮点数为最短可往返的定点表示，不使用科学计数法与千分位。nil 返回 false。
func FormatValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return "", false
	}

	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case fmt.Stringer:
		return x.String(), true
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return FormatValue(rv.Elem().Interface())
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.String:
		return rv.String(), true
	}
	return fmt.Sprint(v), true
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
