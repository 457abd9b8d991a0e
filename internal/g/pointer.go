package g

// Pointer returns pointer to copy of object
func Pointer[T any](o T) *T {
	return &o
}

// NilToNil receive function adopts function for converting any types to works with pointers
func NilToNil[I any, O any](f func(i I) O, i *I) *O {
	if i == nil {
		return nil
	}
	return Pointer(f(*i))
}
