package model

import "fmt"

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// PatientInfo is submitted once per analysis request.
type PatientInfo struct {
	Name   string `json:"name" binding:"required,notblank,max=200"`
	Age    *int   `json:"age" binding:"required,min=0,max=120"`
	Gender Gender `json:"gender" binding:"required,oneof=Male Female Other"`
}

// AgeValue returns the age, or -1 when it was not supplied.
func (p PatientInfo) AgeValue() int {
	if p.Age == nil {
		return -1
	}
	return *p.Age
}

// Summary is the user-message text recorded for an analysis request.
func (p PatientInfo) Summary() string {
	return fmt.Sprintf("Analyzing report for patient: %s, Age: %d, Gender: %s", p.Name, p.AgeValue(), p.Gender)
}
