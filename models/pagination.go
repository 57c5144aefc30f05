package models

import "gorm.io/gorm"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest is offset pagination normalized to sane bounds.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p PageRequest) offset() int {
	n := p.normalize()
	return (n.Page - 1) * n.PageSize
}

func (p PageRequest) limit() int {
	return p.normalize().PageSize
}

// paginateAndCount runs Count on the filtered query, then fetches the
// requested page into dest. The count reflects filters, not the page.
func paginateAndCount(query *gorm.DB, page PageRequest, dest interface{}) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	err := query.Offset(page.offset()).Limit(page.limit()).Find(dest).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
