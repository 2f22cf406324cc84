package types_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	types "github.com/okian/seasonboard/internal/domain/types"
)

func TestParseSort(t *testing.T) {
	Convey("Given sort parameters", t, func() {
		Convey("When they are empty", func() {
			by, err := types.ParseSortBy("")
			So(err, ShouldBeNil)
			So(by, ShouldEqual, types.SortVotes)
			order, err := types.ParseSortOrder("")
			So(err, ShouldBeNil)
			So(order, ShouldEqual, types.SortOrder(""))
		})

		Convey("When they use aliases or odd casing", func() {
			by, err := types.ParseSortBy("createdAt")
			So(err, ShouldBeNil)
			So(by, ShouldEqual, types.SortCreatedAt)
			order, err := types.ParseSortOrder(" ASC ")
			So(err, ShouldBeNil)
			So(order, ShouldEqual, types.OrderAsc)
		})

		Convey("When they are unknown", func() {
			_, err := types.ParseSortBy("popularity")
			So(err, ShouldNotBeNil)
			_, err = types.ParseSortOrder("up")
			So(err, ShouldNotBeNil)
		})
	})
}
