package types

import (
	"fmt"
	"path"
)

type PoolID string
type ContainerID string

// Pool is an allocated unit of capacity in the object store.
type Pool struct {
	ID       PoolID
	Capacity int64
}

// Container is a dataset inside exactly one pool. Its namespace path,
// when set, is bound at creation and never changes.
type Container struct {
	ID            ContainerID
	Pool          PoolID
	NamespacePath string
}

// HasNamespace reports whether the container was created with a namespace path.
func (c *Container) HasNamespace() bool {
	return c.NamespacePath != ""
}

type LocatorKind int

const (
	LocatorPosix LocatorKind = iota
	LocatorIdentifier
	LocatorNamespace
)

func (k LocatorKind) String() string {
	switch k {
	case LocatorIdentifier:
		return "identifier"
	case LocatorNamespace:
		return "namespace"
	default:
		return "posix"
	}
}

// Locator says where a copy reads from or writes to. Pool and Container
// are only meaningful for identifier locators.
type Locator struct {
	Kind      LocatorKind
	Pool      PoolID
	Container ContainerID
	Path      string
}

func (l Locator) String() string {
	if l.Kind == LocatorIdentifier {
		return fmt.Sprintf("%s:%s/%s%s", l.Kind, l.Pool, l.Container, l.Path)
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Path)
}

// ContainerPath returns the path inside the container, rooted at "/".
func (l Locator) ContainerPath() string {
	if l.Path == "" {
		return "/"
	}
	return path.Clean("/" + l.Path)
}

// Overrides replace the identifiers implied by the locators of a
// CopyRequest. Empty fields leave the implied identifier in place.
type Overrides struct {
	SrcPool PoolID
	SrcCont ContainerID
	DstPool PoolID
	DstCont ContainerID
}

func (o Overrides) IsZero() bool {
	return o == Overrides{}
}

type CopyRequest struct {
	Source      Locator
	Destination Locator
	Prefix      string
	Overrides   Overrides
}

type OutcomeStatus int

const (
	StatusSuccess OutcomeStatus = iota
	StatusFailure
)

// Outcome is the single result of one execution of an external tool.
type Outcome struct {
	Status   OutcomeStatus
	Tool     string
	Reason   string
	ExitCode int
	Stdout   string
	Stderr   string
}

func Success(tool string) Outcome {
	return Outcome{Status: StatusSuccess, Tool: tool}
}

func Failure(tool, reason string) Outcome {
	return Outcome{Status: StatusFailure, Tool: tool, Reason: reason, ExitCode: 1}
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func (o Outcome) Failed() bool {
	return o.Status == StatusFailure
}

func (o Outcome) String() string {
	if o.Succeeded() {
		return fmt.Sprintf("%s: success", o.Tool)
	}
	return fmt.Sprintf("%s: failure (exit %d): %s", o.Tool, o.ExitCode, o.Reason)
}
