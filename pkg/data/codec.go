package data

import (
	"encoding/json"
)

// StorageKey is the fixed key the serialized Records live under.
const StorageKey = "downloaded_comics"

func encodeRecords(rs Records) ([]byte, error) {
	if rs == nil {
		rs = Records{}
	}
	return json.Marshal(rs)
}

func decodeRecords(blob []byte) (Records, error) {
	rs := Records{}
	if len(blob) == 0 {
		return rs, nil
	}
	if err := json.Unmarshal(blob, &rs); err != nil {
		return nil, &DeserializeError{Err: err}
	}
	for id, r := range rs {
		if r == nil {
			delete(rs, id)
			continue
		}
		r.ComicID = id
		if r.Chapters == nil {
			r.Chapters = make(map[string][]string)
		}
	}
	return rs, nil
}
