package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/haukened/rr-block/internal/block/domain"
)

// listCodecVersion prefixes every encoded list.
const listCodecVersion byte = 1

const flagAllow byte = 1 << 0

var errTruncated = errors.New("truncated list record")

// encodeList encodes the rules of l as:
//
//	version(1) count(uvarint) { order(uvarint) flags(1) type(1) scope(1) len(uvarint) value }
//
// The list name is the bucket key and is not repeated in the value.
func encodeList(l domain.RuleList) []byte {
	buf := make([]byte, 0, 2+len(l.Rules)*32)
	buf = append(buf, listCodecVersion)
	buf = binary.AppendUvarint(buf, uint64(len(l.Rules)))
	for _, r := range l.Rules {
		var flags byte
		if r.Allow {
			flags |= flagAllow
		}
		buf = binary.AppendUvarint(buf, uint64(r.Order))
		buf = append(buf, flags, byte(r.Type), byte(r.Scope))
		buf = binary.AppendUvarint(buf, uint64(len(r.Value)))
		buf = append(buf, r.Value...)
	}
	return buf
}

// decodeList is the inverse of encodeList.
func decodeList(name string, data []byte) (domain.RuleList, error) {
	if len(data) == 0 {
		return domain.RuleList{}, errTruncated
	}
	if data[0] != listCodecVersion {
		return domain.RuleList{}, fmt.Errorf("unsupported list record version %d", data[0])
	}
	p := data[1:]

	n, err := readUvarint(&p)
	if err != nil {
		return domain.RuleList{}, err
	}
	// each rule needs at least five bytes
	if n > uint64(len(p))/5 {
		return domain.RuleList{}, errTruncated
	}

	l := domain.RuleList{Name: name, Rules: make([]domain.Rule, 0, n)}
	for range n {
		order, err := readUvarint(&p)
		if err != nil {
			return domain.RuleList{}, err
		}
		if order > uint64(^uint32(0)) {
			return domain.RuleList{}, fmt.Errorf("rule order %d out of range", order)
		}
		if len(p) < 3 {
			return domain.RuleList{}, errTruncated
		}
		flags, typ, scope := p[0], p[1], p[2]
		p = p[3:]
		vlen, err := readUvarint(&p)
		if err != nil {
			return domain.RuleList{}, err
		}
		if vlen > uint64(len(p)) {
			return domain.RuleList{}, errTruncated
		}
		l.Rules = append(l.Rules, domain.Rule{
			Order: uint32(order),
			Allow: flags&flagAllow != 0,
			Type:  domain.RuleType(typ),
			Value: string(p[:vlen]),
			Scope: domain.Stanza(scope),
		})
		p = p[vlen:]
	}
	if len(p) != 0 {
		return domain.RuleList{}, fmt.Errorf("%d trailing bytes after list record", len(p))
	}
	return l, nil
}

func readUvarint(p *[]byte) (uint64, error) {
	v, n := binary.Uvarint(*p)
	if n <= 0 {
		return 0, errTruncated
	}
	*p = (*p)[n:]
	return v, nil
}
