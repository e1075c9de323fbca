package quote

import "github.com/solatis/quotekeeper/internal/types"

// FindCoursePrice returns the price record for a course. A record for the
// student's region wins; otherwise the first record for the course is used.
func FindCoursePrice(prices []types.CoursePrice, courseID, regionID string) (types.CoursePrice, bool) {
	var fallback *types.CoursePrice
	for i := range prices {
		p := &prices[i]
		if p.CourseDetailsID != courseID {
			continue
		}
		if regionID != "" && p.RegionID == regionID {
			return *p, true
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return types.CoursePrice{}, false
	}
	return *fallback, true
}

// CourseBasePrice is the fixed base price when present, else weekly price
// times duration. The second result is false when the record carries
// neither.
func CourseBasePrice(course types.CourseSelection, price types.CoursePrice) (types.Amount, bool) {
	switch {
	case price.BasePrice != nil:
		return *price.BasePrice, true
	case price.PricePerWeek != nil:
		return price.PricePerWeek.MulInt(int64(course.DurationWeeks)), true
	default:
		return types.Zero, false
	}
}

// FindAccommodationRoom matches the room rate by type and room size.
func FindAccommodationRoom(rooms []types.AccommodationRoom, sel types.AccommodationSelection) (types.AccommodationRoom, bool) {
	for _, r := range rooms {
		if r.AccommodationTypeID == sel.AccommodationTypeID && r.RoomSizeID == sel.RoomSizeID {
			return r, true
		}
	}
	return types.AccommodationRoom{}, false
}
