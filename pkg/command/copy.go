package command

import (
	"dmtest/pkg/types"
)

// Copy tool flags.
const (
	FlagPrefix  = "--prefix"
	FlagSrcPool = "--src-pool"
	FlagDstPool = "--dst-pool"
	FlagSrcCont = "--src-cont"
	FlagDstCont = "--dst-cont"
)

// CopyArgs is the typed argument set of one copy tool run. Every field
// is independently settable so negative cases can combine values the
// locator model would never produce.
type CopyArgs struct {
	Src     string
	Dst     string
	Prefix  string
	SrcPool types.PoolID
	SrcCont types.ContainerID
	DstPool types.PoolID
	DstCont types.ContainerID
	Extra   []string
}

// CopyArgsFor derives the arguments of a request. Identifiers implied
// by identifier locators are applied first and then replaced by any
// non-empty override; the path arguments are never touched by overrides.
func CopyArgsFor(req types.CopyRequest) CopyArgs {
	a := CopyArgs{
		Src:    endpointPath(req.Source),
		Dst:    endpointPath(req.Destination),
		Prefix: req.Prefix,
	}
	if req.Source.Kind == types.LocatorIdentifier {
		a.SrcPool, a.SrcCont = req.Source.Pool, req.Source.Container
	}
	if req.Destination.Kind == types.LocatorIdentifier {
		a.DstPool, a.DstCont = req.Destination.Pool, req.Destination.Container
	}

	o := req.Overrides
	if o.SrcPool != "" {
		a.SrcPool = o.SrcPool
	}
	if o.SrcCont != "" {
		a.SrcCont = o.SrcCont
	}
	if o.DstPool != "" {
		a.DstPool = o.DstPool
	}
	if o.DstCont != "" {
		a.DstCont = o.DstCont
	}
	return a
}

func endpointPath(l types.Locator) string {
	if l.Kind == types.LocatorIdentifier {
		return l.ContainerPath()
	}
	return l.Path
}

// Args serializes the flags followed by the two positional paths.
func (a CopyArgs) Args() []string {
	var args []string
	if a.Prefix != "" {
		args = append(args, FlagPrefix, a.Prefix)
	}
	if a.SrcPool != "" {
		args = append(args, FlagSrcPool, string(a.SrcPool))
	}
	if a.DstPool != "" {
		args = append(args, FlagDstPool, string(a.DstPool))
	}
	if a.SrcCont != "" {
		args = append(args, FlagSrcCont, string(a.SrcCont))
	}
	if a.DstCont != "" {
		args = append(args, FlagDstCont, string(a.DstCont))
	}
	args = append(args, a.Extra...)
	return append(args, a.Src, a.Dst)
}
