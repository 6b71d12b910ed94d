package models

// Teacher represents an instructor record as served by the upstream API.
// Students and Courses are only present when the upstream embeds them.
type Teacher struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Students   []Student `json:"students,omitempty"`
	Courses    []Course  `json:"courses,omitempty"`
}

// CreateTeacherForm mirrors the add-teacher modal inputs.
type CreateTeacherForm struct {
	Name       string `form:"name" json:"name" validate:"required,max=255"`
	Email      string `form:"email" json:"email" validate:"required,email"`
	Department string `form:"department" json:"department" validate:"required,max=255"`
}
