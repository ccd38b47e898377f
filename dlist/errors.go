package dlist

import "errors"

// ErrIndexOutOfRange is wrapped by any operation given an index outside
// the list's current bounds.
var ErrIndexOutOfRange = errors.New("dlist: index out of range")

// ErrNoCurrentElement is returned by an Iterator's Set and Remove calls
// when there is no current element: before any successful Next or
// Prev, or after Add or Remove has cleared it. Next and Prev return it
// when there is no element in their direction of travel.
var ErrNoCurrentElement = errors.New("dlist: no current element")
