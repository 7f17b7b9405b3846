//
//  Copyright © Manetu Inc. All rights reserved.
//

package patch

import "fmt"

// Kind names a patch failure so the boundary can map it to a protocol error.
type Kind string

// Failure kinds.
const (
	MalformedPatch        Kind = "MalformedPatch"
	MandatoryFieldRemoved Kind = "MandatoryFieldRemoved"
	MissingChildIdentity  Kind = "MissingChildIdentity"
	UnknownChild          Kind = "UnknownChild"
	ImmutableField        Kind = "ImmutableField"
	InvalidResult         Kind = "InvalidResult"
)

// Failure is a patch that could not be applied.  The resource is unchanged.
type Failure struct {
	Kind Kind
	// Path is the JSON path of the offending field, e.g. "evses[0].uid".
	Path string
	// Child is the unknown child identity for UnknownChild.
	Child  string
	Detail string
}

func (f *Failure) Error() string {
	switch {
	case f.Child != "":
		return fmt.Sprintf("%s: %s %q at %s", f.Kind, f.Detail, f.Child, f.Path)
	case f.Path != "":
		return fmt.Sprintf("%s: %s at %s", f.Kind, f.Detail, f.Path)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
}

func fail(kind Kind, path, detail string) *Failure {
	return &Failure{Kind: kind, Path: path, Detail: detail}
}
