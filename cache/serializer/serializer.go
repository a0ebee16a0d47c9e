// Package serializer 定义分布式缓存值的编解码方式。
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/orchestrator/xerrors"
)

// ErrUnsupportedSerializer 不支持的序列化器类型
var ErrUnsupportedSerializer = xerrors.Mark(xerrors.New("unsupported serializer type"), xerrors.ErrInvalidInput)

// Serializer 定义序列化接口
type Serializer interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
	Name() string
}

// JSONSerializer JSON 序列化器
type JSONSerializer struct{}

func (JSONSerializer) Marshal(value any) ([]byte, error) { return json.Marshal(value) }

func (JSONSerializer) Unmarshal(data []byte, dest any) error { return json.Unmarshal(data, dest) }

func (JSONSerializer) Name() string { return "json" }

// MessagePackSerializer MessagePack 序列化器，体积更小、编解码更快
type MessagePackSerializer struct{}

func (MessagePackSerializer) Marshal(value any) ([]byte, error) { return msgpack.Marshal(value) }

func (MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

func (MessagePackSerializer) Name() string { return "msgpack" }

// New 创建序列化器
//
// 支持的类型：
//   - "json"（默认）：可读，便于用 redis-cli 排查
//   - "msgpack"：二进制，适合高频读写
func New(serializerType string) (Serializer, error) {
	switch serializerType {
	case "json", "":
		return JSONSerializer{}, nil
	case "msgpack":
		return MessagePackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedSerializer, "%q", serializerType)
	}
}
