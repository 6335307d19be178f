package model

// Ptr 取值的指针，方便构造可空列
func Ptr[T any](v T) *T {
	return &v
}

// StrPtr 空字符串返回 nil
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref 解引用，nil 返回零值
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
