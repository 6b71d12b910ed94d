package models

// ToastKind classifies a one-shot status message.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a transient status message shown on the next rendered page.
type Toast struct {
	Kind ToastKind `json:"kind"`
	Text string    `json:"text"`
}

// SuccessToast builds a success toast.
func SuccessToast(text string) Toast {
	return Toast{Kind: ToastSuccess, Text: text}
}

// ErrorToast builds an error toast.
func ErrorToast(text string) Toast {
	return Toast{Kind: ToastError, Text: text}
}
