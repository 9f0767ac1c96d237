// Package analytics builds the dashboard chart series from backend data.
// Aggregation happens here, portal-side; the backend only serves raw rows.
package analytics

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/models"
)

// PayrollSource provides the raw rows the charts are built from
type PayrollSource interface {
	GetPayrollRecords(ctx context.Context, companyID string) ([]models.PayrollRecord, error)
	GetDepartments(ctx context.Context, companyID string) ([]models.Department, error)
}

// Service computes dashboard aggregations
type Service struct {
	source PayrollSource
	store  *cache.Store
}

// NewService creates an analytics service. store may be nil to bypass
// caching (tests).
func NewService(source PayrollSource, store *cache.Store) *Service {
	return &Service{
		source: source,
		store:  store,
	}
}

// MonthlyPayrollPoint is one month's payroll total
type MonthlyPayrollPoint struct {
	Month   string  `json:"month"` // YYYY-MM
	Total   float64 `json:"total"`
	Records int     `json:"records"`
}

// DepartmentPayrollPoint is one department's payroll total
type DepartmentPayrollPoint struct {
	DepartmentID string  `json:"department_id"`
	Department   string  `json:"department"`
	Total        float64 `json:"total"`
	Records      int     `json:"records"`
}

// DashboardCharts holds both chart series
type DashboardCharts struct {
	ByMonth      []MonthlyPayrollPoint    `json:"by_month"`
	ByDepartment []DepartmentPayrollPoint `json:"by_department"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

func (s *Service) payrollRecords(ctx context.Context, companyID string) ([]models.PayrollRecord, error) {
	if s.store == nil {
		return s.source.GetPayrollRecords(ctx, companyID)
	}
	var records []models.PayrollRecord
	resource := cache.Scoped(cache.ResourcePayroll, companyID)
	err := s.store.Fetch(ctx, resource, &records, func(ctx context.Context) (interface{}, error) {
		return s.source.GetPayrollRecords(ctx, companyID)
	})
	return records, err
}

func (s *Service) departments(ctx context.Context, companyID string) ([]models.Department, error) {
	if s.store == nil {
		return s.source.GetDepartments(ctx, companyID)
	}
	var departments []models.Department
	resource := cache.Scoped(cache.ResourceDepartments, companyID)
	err := s.store.Fetch(ctx, resource, &departments, func(ctx context.Context) (interface{}, error) {
		return s.source.GetDepartments(ctx, companyID)
	})
	return departments, err
}

// PayrollByMonth groups payroll records into chronological monthly totals.
// Records with unparseable pay dates are excluded from the series.
func (s *Service) PayrollByMonth(ctx context.Context, companyID string) ([]MonthlyPayrollPoint, error) {
	records, err := s.payrollRecords(ctx, companyID)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*MonthlyPayrollPoint)
	for _, record := range records {
		payDate, err := time.Parse("2006-01-02", record.PayDate)
		if err != nil {
			log.Printf("⚠️  Skipping payroll record %s with bad pay date %q", record.ID, record.PayDate)
			continue
		}
		month := payDate.Format("2006-01")
		point, exists := byMonth[month]
		if !exists {
			point = &MonthlyPayrollPoint{Month: month}
			byMonth[month] = point
		}
		point.Total += record.Amount
		point.Records++
	}

	series := make([]MonthlyPayrollPoint, 0, len(byMonth))
	for _, point := range byMonth {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Month < series[j].Month
	})

	return series, nil
}

// PayrollByDepartment groups payroll totals per department, sorted by
// department name. Records pointing at an unknown department keep their
// department id as the display name.
func (s *Service) PayrollByDepartment(ctx context.Context, companyID string) ([]DepartmentPayrollPoint, error) {
	records, err := s.payrollRecords(ctx, companyID)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments(ctx, companyID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(departments))
	for _, dept := range departments {
		names[dept.ID] = dept.Name
	}

	byDept := make(map[string]*DepartmentPayrollPoint)
	for _, record := range records {
		point, exists := byDept[record.DepartmentID]
		if !exists {
			name, ok := names[record.DepartmentID]
			if !ok {
				name = record.DepartmentID
			}
			point = &DepartmentPayrollPoint{DepartmentID: record.DepartmentID, Department: name}
			byDept[record.DepartmentID] = point
		}
		point.Total += record.Amount
		point.Records++
	}

	series := make([]DepartmentPayrollPoint, 0, len(byDept))
	for _, point := range byDept {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Department < series[j].Department
	})

	return series, nil
}

// DashboardCharts builds both chart series in one call
func (s *Service) DashboardCharts(ctx context.Context, companyID string) (*DashboardCharts, error) {
	byMonth, err := s.PayrollByMonth(ctx, companyID)
	if err != nil {
		return nil, err
	}
	byDepartment, err := s.PayrollByDepartment(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return &DashboardCharts{
		ByMonth:      byMonth,
		ByDepartment: byDepartment,
		GeneratedAt:  time.Now(),
	}, nil
}
