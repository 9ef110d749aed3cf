package services

import (
	"strings"
	"time"

	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"gorm.io/gorm"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Active   *bool  `form:"active"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Location    string `json:"location"`
	Client      string `json:"client"`
	CountryCode string `json:"country_code"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
}

type UpdateProjectRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Client      string `json:"client"`
	CountryCode string `json:"country_code"`
	StartDate   string `json:"start_date"`
	IsActive    *bool  `json:"is_active"`
}

// List returns paginated projects
func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var projects []models.Project
	var total int64

	query := s.db.Model(&models.Project{})

	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project by ID
func (s *ProjectService) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Create creates a new project
func (s *ProjectService) Create(req *CreateProjectRequest, userID uint) (*models.Project, error) {
	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if country == "" {
		country = "NONE"
	}

	project := models.Project{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Location:    req.Location,
		Client:      req.Client,
		CountryCode: country,
		IsActive:    true,
		CreatedBy:   userID,
	}
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		project.StartDate = &d
	}

	var existing int64
	s.db.Model(&models.Project{}).Where("code = ?", project.Code).Count(&existing)
	if existing > 0 {
		return nil, lifecycle.Invalid("code", lifecycle.ErrDuplicate, "project code %s already exists", project.Code)
	}

	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// Update updates a project
func (s *ProjectService) Update(id uint, req *UpdateProjectRequest) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Location != "" {
		updates["location"] = req.Location
	}
	if req.Client != "" {
		updates["client"] = req.Client
	}
	if req.CountryCode != "" {
		updates["country_code"] = strings.ToUpper(req.CountryCode)
	}
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		updates["start_date"] = d
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// parseDate accepts ISO dates and the day-first form used on site sheets.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"2006-01-02", "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, lifecycle.Invalid("date", lifecycle.ErrInvalidValue, "invalid date %q", v)
}
