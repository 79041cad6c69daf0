package protocol

// Records (a batch of) encoded frames. A frame is one self-contained
// JSON document.
type Records [][]byte

func (recs Records) TotalLen() (total int64) {
	for _, r := range recs {
		total += int64(len(r))
	}
	return
}
