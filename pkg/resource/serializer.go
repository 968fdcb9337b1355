package resource

import (
	"github.com/pkg/errors"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack"
)

// Serializer names accepted by the "serializer" option
const (
	SerializerNone    = "none"
	SerializerJSON    = "json"
	SerializerMsgpack = "msgpack"
)

// Serializer converts values stored through a connection handle
type Serializer interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// NewSerializer returns serializer registered under name, empty name means none
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "", SerializerNone:
		return noneSerializer{}, nil
	case SerializerJSON:
		return jsonSerializer{}, nil
	case SerializerMsgpack:
		return msgpackSerializer{}, nil
	default:
		return nil, invalidConfig("unknown serializer %q", name)
	}
}

// noneSerializer passes strings and byte slices unchanged
type noneSerializer struct{}

func (noneSerializer) Name() string {
	return SerializerNone
}

func (noneSerializer) Marshal(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, errors.Errorf("serializer none: unsupported value of type %T", v)
	}
}

func (noneSerializer) Unmarshal(data []byte, v interface{}) error {
	switch t := v.(type) {
	case *[]byte:
		*t = append((*t)[:0], data...)
	case *string:
		*t = string(data)
	default:
		return errors.Errorf("serializer none: unsupported target of type %T", v)
	}

	return nil
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonSerializer struct{}

func (jsonSerializer) Name() string {
	return SerializerJSON
}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonSerializer) Unmarshal(data []byte, v interface{}) error {
	return jsonAPI.Unmarshal(data, v)
}

type msgpackSerializer struct{}

func (msgpackSerializer) Name() string {
	return SerializerMsgpack
}

func (msgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
