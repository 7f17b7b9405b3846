//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
