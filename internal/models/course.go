package models

// Course is a subject taught by exactly one teacher.
type Course struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	CourseCode string `json:"courseCode"`
	Credits    int    `json:"credits"`
}

// CreateCourseForm mirrors the add-course modal. Credits is bound as a string so
// a rejected submission can be re-rendered exactly as typed.
type CreateCourseForm struct {
	Title      string `form:"title" json:"title" validate:"required,max=255"`
	CourseCode string `form:"courseCode" json:"courseCode" validate:"required,max=50"`
	Credits    string `form:"credits" json:"-" validate:"required,number"`
	TeacherID  string `form:"teacherId" json:"-" validate:"required,number"`
}

// CreateCoursePayload is the JSON body sent upstream for a course.
type CreateCoursePayload struct {
	Title      string `json:"title"`
	CourseCode string `json:"courseCode"`
	Credits    int    `json:"credits"`
}
