package message

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func MessageEncode(sender, tag, v int) (ReqMsg, error) {
	var buffer bytes.Buffer
	enc := gob.NewEncoder(&buffer)
	if err := enc.Encode(Value{V: v}); err != nil {
		return ReqMsg{}, fmt.Errorf("encode value from [%d]: %w", sender, err)
	}
	reqMsg := ReqMsg{
		Sender: sender,
		Tag:    tag,
		Args:   buffer.Bytes(),
	}
	return reqMsg, nil
}

func MessageDecode(req ReqMsg) (int, error) {
	var val Value
	dec := gob.NewDecoder(bytes.NewBuffer(req.Args))
	if err := dec.Decode(&val); err != nil {
		return 0, fmt.Errorf("decode value from [%d]: %w", req.Sender, err)
	}
	return val.V, nil
}
