package sqlite

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type employeeModel struct {
	ID                 string `gorm:"primaryKey"`
	Name               string `gorm:"not null"`
	NameKey            string `gorm:"not null;index"`
	Email              string
	MobileNo           string
	Address            string
	Gender             string
	Department         string
	Position           string
	Salary             *float64
	WorkingHoursPerDay *float64
	EmployeeType       string
	JoiningDate        string
	Embedding          []byte // little-endian float32
	Photo              []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (employeeModel) TableName() string {
	return "employees"
}

type attendanceModel struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	EmployeeID string     `gorm:"not null;uniqueIndex:idx_attendance_employee_date"`
	Date       string     `gorm:"not null;uniqueIndex:idx_attendance_employee_date;index"`
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     string `gorm:"not null"`

	Employee employeeModel `gorm:"foreignKey:EmployeeID;references:ID;constraint:OnDelete:CASCADE"`
}

func (attendanceModel) TableName() string {
	return "attendance"
}

type officeSettingsModel struct {
	ID          uint   `gorm:"primaryKey"`
	StartTime   string `gorm:"not null"`
	EndTime     string `gorm:"not null"`
	OnTimeLimit string `gorm:"not null"`
	UpdatedAt   time.Time
}

func (officeSettingsModel) TableName() string {
	return "office_settings"
}

func (m *employeeModel) toEmployee() *database.Employee {
	return &database.Employee{
		ID:                 m.ID,
		Name:               m.Name,
		Email:              m.Email,
		MobileNo:           m.MobileNo,
		Address:            m.Address,
		Gender:             m.Gender,
		Department:         m.Department,
		Position:           m.Position,
		Salary:             m.Salary,
		WorkingHoursPerDay: m.WorkingHoursPerDay,
		EmployeeType:       m.EmployeeType,
		JoiningDate:        m.JoiningDate,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func localTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	lt := t.In(time.Local)
	return &lt
}

func (m *attendanceModel) toRecord() *database.AttendanceRecord {
	return &database.AttendanceRecord{
		ID:         m.ID,
		EmployeeID: m.EmployeeID,
		Date:       m.Date,
		CheckIn:    localTime(m.CheckIn),
		CheckOut:   localTime(m.CheckOut),
		Status:     database.AttendanceStatus(m.Status),
	}
}

// encodeEmbedding packs a vector as little-endian float32 values.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// decodeEmbedding unpacks a vector written by encodeEmbedding.
func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
