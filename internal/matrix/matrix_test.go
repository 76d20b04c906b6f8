package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortEmployees_ByNameThenPassportThenID(t *testing.T) {
	rows := []EmployeeRow{
		{EmployeeID: "3", FullName: "Zara Ali", PassportID: "z999"},
		{EmployeeID: "1", FullName: "amir khan", PassportID: "a111"},
		{EmployeeID: "2", FullName: "Amir Khan", PassportID: "a000"},
	}
	SortEmployees(rows)

	assert.Equal(t, "2", rows[0].EmployeeID) // amir khan / a000
	assert.Equal(t, "1", rows[1].EmployeeID) // amir khan / a111
	assert.Equal(t, "3", rows[2].EmployeeID) // zara ali
}
