package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestParseSeasons(t *testing.T) {
	convey.Convey("Given a season list flag", t, func() {
		convey.Convey("empty means none", func() {
			out, err := parseSeasons(" ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldBeNil)
		})

		convey.Convey("values are trimmed and parsed", func() {
			out, err := parseSeasons("1, 2,10")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldResemble, []uint64{1, 2, 10})
		})

		convey.Convey("zero and garbage are rejected", func() {
			_, err := parseSeasons("1,0")
			convey.So(err, convey.ShouldNotBeNil)
			_, err = parseSeasons("x")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
