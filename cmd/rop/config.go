package main

import (
	"github.com/mewkiz/pkg/jsonutil"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewmew/rop/bin"
	"github.com/pkg/errors"
)

// namedRegionJSON mirrors the on-disk shape of a --fgkaslr-regions file: a
// flat array of {name, offset, vaddr, size} objects, the same fields
// bin.NamedRegion carries.
type namedRegionJSON struct {
	Name   string  `json:"name"`
	Offset uint64  `json:"offset"`
	Vaddr  bin.Addr `json:"vaddr"`
	Size   uint64  `json:"size"`
}

// parseNamedRegions loads a --fgkaslr-regions override file, grounded on the
// teacher's parseJSON (cmd/x/helper.go): a missing file is a warning, not a
// fatal error, since --fgkaslr-regions is optional unless --raw is also set.
func parseNamedRegions(jsonPath string) ([]*bin.NamedRegion, error) {
	if !osutil.Exists(jsonPath) {
		warn.Printf("unable to locate JSON file %q", jsonPath)
		return nil, nil
	}
	dbg.Printf("parseNamedRegions(jsonPath = %q)", jsonPath)
	var raw []namedRegionJSON
	if err := jsonutil.ParseFile(jsonPath, &raw); err != nil {
		return nil, errors.WithStack(err)
	}
	regions := make([]*bin.NamedRegion, len(raw))
	for i, r := range raw {
		regions[i] = bin.NewNamedRegion(r.Name, r.Offset, r.Vaddr, r.Size)
	}
	return regions, nil
}
