package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName — content-subtype сообщений AuthService ("application/grpc+hrm-json").
// Имя отличается от "json", чтобы не перетереть чужой JSON-кодек в том же бинаре.
const CodecName = "hrm-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec сериализует сообщения AuthService в JSON. Сообщения — обычные
// Go-структуры, поэтому сервису не нужен сгенерированный protobuf-код.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }
