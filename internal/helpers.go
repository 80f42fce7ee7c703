package internal

// PanicOnError panics if given non-nil error. Reserved for failures that can
// only come from a programming mistake, such as registering a flag twice.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}
