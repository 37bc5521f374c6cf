package domain

import (
	"time"
)

// Severity grades how urgently a defect needs attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ReportStatus is the triage state of a report.
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusAssigned ReportStatus = "assigned"
	StatusResolved ReportStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// IssueType is the class of road defect.
type IssueType string

const (
	IssuePothole    IssueType = "pothole"
	IssueCrack      IssueType = "crack"
	IssueSpeedHump  IssueType = "speed_hump"
	IssueNormalRoad IssueType = "normal_road"
	IssueDebris     IssueType = "debris"
	IssueFlooding   IssueType = "flooding"
)

// Valid reports whether t is a known defect class.
func (t IssueType) Valid() bool {
	switch t {
	case IssuePothole, IssueCrack, IssueSpeedHump, IssueNormalRoad, IssueDebris, IssueFlooding:
		return true
	}
	return false
}

// Report is a citizen- or camera-submitted road damage report.
type Report struct {
	ID                string       `json:"id"`
	ReporterID        string       `json:"reporter_id,omitempty"`
	Location          *GeoPoint    `json:"location,omitempty"`
	Address           string       `json:"address,omitempty"`
	IssueType         IssueType    `json:"issue_type"`
	Severity          Severity     `json:"severity"`
	Description       string       `json:"description,omitempty"`
	Images            []string     `json:"images,omitempty"`
	Status            ReportStatus `json:"status"`
	Priority          int          `json:"priority"`
	VerificationScore float64      `json:"verification_score"`
	AssignedTo        string       `json:"assigned_to,omitempty"`
	AssignedAt        *time.Time   `json:"assigned_at,omitempty"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
	ResolutionNotes   string       `json:"resolution_notes,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Entity returns the proximity view of the report.
func (r Report) Entity() LocatedEntity {
	return LocatedEntity{
		ID:        r.ID,
		Location:  r.Location,
		Severity:  string(r.Severity),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

// ReportFilter narrows report listings. Empty fields match everything.
type ReportFilter struct {
	Status    ReportStatus
	Severity  Severity
	IssueType IssueType
}

// ReportPatch carries the fields an authority may change on a report.
type ReportPatch struct {
	Status          *ReportStatus `json:"status,omitempty"`
	AssignedTo      *string       `json:"assigned_to,omitempty"`
	Priority        *int          `json:"priority,omitempty"`
	ResolutionNotes *string       `json:"resolution_notes,omitempty"`
}

// BBox is a pixel-space bounding box in a camera frame.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in square pixels.
func (b BBox) Area() int { return b.Width * b.Height }

// DefectObservation is a single detector hit.
type DefectObservation struct {
	Type       IssueType `json:"type"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
}

// Detection is a persisted camera detection.
type Detection struct {
	ID         string            `json:"id"`
	CameraID   string            `json:"camera_id"`
	Location   *GeoPoint         `json:"location,omitempty"`
	Defect     DefectObservation `json:"defect"`
	Severity   Severity          `json:"severity"`
	ImageURL   string            `json:"image_url,omitempty"`
	ReportID   string            `json:"report_id,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`
}

// Camera is a registered roadside or dashboard camera.
type Camera struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Port      int       `json:"port"`
	Location  *GeoPoint `json:"location,omitempty"`
	Streaming bool      `json:"streaming"`
	CreatedAt time.Time `json:"created_at"`
}

// Statistics is the dashboard summary.
type Statistics struct {
	TotalReports  int `json:"total_reports"`
	ReportsToday  int `json:"reports_today"`
	Pending       int `json:"pending_reports"`
	ResolvedToday int `json:"resolved_today"`
	HighPriority  int `json:"high_priority"`
	AIDetections  int `json:"ai_detections"`
}
