package models

// Student is a learner owned by exactly one teacher.
type Student struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	StudentID string `json:"studentId"`
}

// CreateStudentForm mirrors the add-student modal. TeacherID scopes the create
// endpoint and is not part of the JSON body.
type CreateStudentForm struct {
	Name      string `form:"name" json:"name" validate:"required,max=255"`
	Email     string `form:"email" json:"email" validate:"required,email"`
	StudentID string `form:"studentId" json:"studentId" validate:"required,max=50"`
	TeacherID string `form:"teacherId" json:"-" validate:"required,number"`
}
