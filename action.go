package dux

import "reflect"

// KindNamer is an optional interface actions can implement to provide
// a stable kind name. Without it, the kind is the reflect-based
// package-qualified type name, which changes when the type is moved
// or renamed.
//
// Example:
//
//	type UpdateTitle struct{ Title string }
//	func (UpdateTitle) ActionKind() string { return "header.update-title" }
type KindNamer interface {
	ActionKind() string
}

// Kind returns the kind name for an action.
// If the action implements KindNamer, returns the custom name.
// Otherwise returns the reflect-based package-qualified name.
// Returns "nil" if action is nil.
func Kind(action any) string {
	if action == nil {
		return "nil"
	}
	if namer, ok := action.(KindNamer); ok {
		return namer.ActionKind()
	}
	return reflect.TypeOf(action).String()
}

// typeOf returns the reflect.Type for a type parameter without
// needing a value of that type.
func typeOf[A any]() reflect.Type {
	return reflect.TypeOf((*A)(nil)).Elem()
}
