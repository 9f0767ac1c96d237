package models

// Department represents a company department
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PayrollRecord represents one payroll payment owned by the backend
type PayrollRecord struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	DepartmentID string  `json:"department_id"`
	Amount       float64 `json:"amount"`
	PayDate      string  `json:"pay_date"` // YYYY-MM-DD
}
