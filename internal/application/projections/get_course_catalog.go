package projections

import (
	"context"
	"sort"
	"strings"

	"scheduler/internal/application/listutil"
	"scheduler/internal/domain/course"
)

// CatalogSortColumns are the columns the catalog can be sorted by.
var CatalogSortColumns = []string{"code", "name", "year"}

// GetCourseCatalogQuery carries input for the catalog projection.
type GetCourseCatalogQuery struct {
	Token          string
	Search         string
	PriorityPrefix string
	// List pages and sorts the result; the zero value shows the first page
	// in catalog order.
	List listutil.ListParams
}

// GetCourseCatalogDeps holds dependencies for the catalog projection.
type GetCourseCatalogDeps struct {
	Backend CourseLister
}

// CourseCatalogResult is the filtered, ordered catalog.
type CourseCatalogResult struct {
	Courses []course.Course // the current page
	Matched int             // courses matching the search
	Total   int
	Search  string
	Page    listutil.PageInfo
	List    listutil.ListParams
}

// QueryGetCourseCatalog returns one page of the catalog, filtered by code or
// name.
// PRE: none
// POST: without a sort column, courses with PriorityPrefix come first, each
// group ascending by code; Total counts the unfiltered catalog
func QueryGetCourseCatalog(ctx context.Context, query GetCourseCatalogQuery, deps GetCourseCatalogDeps) (CourseCatalogResult, error) {
	courses, err := deps.Backend.ListCourses(ctx, query.Token)
	if err != nil {
		return CourseCatalogResult{}, err
	}
	search := strings.TrimSpace(query.Search)
	matched := course.Filter(course.SortCatalog(courses, query.PriorityPrefix), search)
	sortCourses(matched, query.List.SortParams)

	list := query.List
	list.Search = search
	page := listutil.NewPageInfo(list.Page, list.PerPage, len(matched))
	return CourseCatalogResult{
		Courses: listutil.Slice(matched, page),
		Matched: len(matched),
		Total:   len(courses),
		Search:  search,
		Page:    page,
		List:    list,
	}, nil
}

// sortCourses reorders courses by the requested column. Ties keep catalog order.
func sortCourses(courses []course.Course, p listutil.SortParams) {
	var less func(a, b course.Course) bool
	switch p.Sort {
	case "code":
		less = func(a, b course.Course) bool { return a.CourseCode < b.CourseCode }
	case "name":
		less = func(a, b course.Course) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "year":
		less = func(a, b course.Course) bool { return a.YearLevel < b.YearLevel }
	default:
		return
	}
	sort.SliceStable(courses, func(i, j int) bool {
		if p.Dir == "desc" {
			return less(courses[j], courses[i])
		}
		return less(courses[i], courses[j])
	})
}

// GetCourseDetailDeps holds dependencies for the course detail projection.
type GetCourseDetailDeps struct {
	Backend CourseGetter
}

// QueryGetCourseDetail fetches one course by code.
func QueryGetCourseDetail(ctx context.Context, token, code string, deps GetCourseDetailDeps) (course.Course, error) {
	return deps.Backend.GetCourse(ctx, token, strings.TrimSpace(code))
}
