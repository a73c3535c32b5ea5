package entity

func Str(s string) *string { return &s }

func Int(i int) *int { return &i }

func Bool(b bool) *bool { return &b }

// Deref returns *p, or the zero value for nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
