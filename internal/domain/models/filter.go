package models

// AccountFilter narrows an account listing. Empty Status means all.
type AccountFilter struct {
	Status string
	Limit  int64
	Offset int64
}
