package depgraph

import (
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
)

func encode(v interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decode(data []byte, v interface{}) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(raw, v)
}
