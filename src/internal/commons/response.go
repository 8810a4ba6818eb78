package commons

// Response is the envelope every HTTP endpoint writes. Kind carries the
// ledger error kind on failures so clients can branch without parsing text.
type Response[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Kind    string   `json:"kind,omitempty"`
	Data    *T       `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    &data,
	}
}

func ErrorResponse[T any](message string, errors ...string) Response[T] {
	return Response[T]{
		Success: false,
		Message: message,
		Errors:  errors,
	}
}

// WithKind tags a failure envelope with its error kind.
func (r Response[T]) WithKind(kind string) Response[T] {
	r.Kind = kind
	return r
}

// WithData attaches a payload to a failure, such as the FAILED entry a
// rejected transfer left in the ledger.
func (r Response[T]) WithData(data T) Response[T] {
	r.Data = &data
	return r
}
