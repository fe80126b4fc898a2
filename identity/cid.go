package identity

import (
	"github.com/ipfs/go-cid"

	"xdao.co/identity/cidutil"
)

// CID returns the content identifier of i's buffer form.
func (i Identity) CID() (cid.Cid, error) {
	b, err := i.ToBuffer()
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.Sum(b)
}
