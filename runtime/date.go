package runtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var apMonths = [...]string{
	"Jan.", "Feb.", "March", "April", "May", "June",
	"July", "Aug.", "Sept.", "Oct.", "Nov.", "Dec.",
}

// namedDateFormats are the format setting names accepted in place of a format
var namedDateFormats = map[string]string{
	"DATE_FORMAT":           "N j, Y",
	"DATETIME_FORMAT":       "N j, Y, P",
	"SHORT_DATE_FORMAT":     "m/d/Y",
	"SHORT_DATETIME_FORMAT": "m/d/Y P",
	"TIME_FORMAT":           "P",
	"YEAR_MONTH_FORMAT":     "F Y",
	"MONTH_DAY_FORMAT":      "F j",
}

// FormatDate formats t with Django's date format characters, as used by the
// now tag and the date filter. A backslash escapes the next character;
// unknown characters are copied.
func FormatDate(t time.Time, format string) string {
	if named, ok := namedDateFormats[format]; ok {
		format = named
	}
	var b strings.Builder
	escaped := false
	for _, c := range format {
		if escaped {
			b.WriteRune(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if s, ok := dateSpecifier(t, c); ok {
			b.WriteString(s)
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func dateSpecifier(t time.Time, c rune) (string, bool) {
	switch c {
	case 'a':
		if t.Hour() < 12 {
			return "a.m.", true
		}
		return "p.m.", true
	case 'A':
		if t.Hour() < 12 {
			return "AM", true
		}
		return "PM", true
	case 'b':
		return strings.ToLower(t.Month().String()[:3]), true
	case 'c':
		return isoFormat(t), true
	case 'd':
		return fmt.Sprintf("%02d", t.Day()), true
	case 'D':
		return t.Weekday().String()[:3], true
	case 'e':
		name, _ := t.Zone()
		return name, true
	case 'E', 'F':
		return t.Month().String(), true
	case 'f':
		return shortTime(t), true
	case 'g':
		return strconv.Itoa(hour12(t)), true
	case 'G':
		return strconv.Itoa(t.Hour()), true
	case 'h':
		return fmt.Sprintf("%02d", hour12(t)), true
	case 'H':
		return fmt.Sprintf("%02d", t.Hour()), true
	case 'i':
		return fmt.Sprintf("%02d", t.Minute()), true
	case 'I':
		if t.IsDST() {
			return "1", true
		}
		return "0", true
	case 'j':
		return strconv.Itoa(t.Day()), true
	case 'l':
		return t.Weekday().String(), true
	case 'L':
		if isLeap(t.Year()) {
			return "True", true
		}
		return "False", true
	case 'm':
		return fmt.Sprintf("%02d", int(t.Month())), true
	case 'M':
		return t.Month().String()[:3], true
	case 'n':
		return strconv.Itoa(int(t.Month())), true
	case 'N':
		return apMonths[t.Month()-1], true
	case 'o':
		year, _ := t.ISOWeek()
		return strconv.Itoa(year), true
	case 'O':
		return t.Format("-0700"), true
	case 'P':
		switch {
		case t.Minute() == 0 && t.Hour() == 0:
			return "midnight", true
		case t.Minute() == 0 && t.Hour() == 12:
			return "noon", true
		}
		suffix, _ := dateSpecifier(t, 'a')
		return shortTime(t) + " " + suffix, true
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700"), true
	case 's':
		return fmt.Sprintf("%02d", t.Second()), true
	case 'S':
		return ordinalSuffix(t.Day()), true
	case 't':
		return strconv.Itoa(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()), true
	case 'T':
		return t.Format("MST"), true
	case 'u':
		return fmt.Sprintf("%06d", t.Nanosecond()/1000), true
	case 'U':
		return strconv.FormatInt(t.Unix(), 10), true
	case 'w':
		return strconv.Itoa(int(t.Weekday())), true
	case 'W':
		_, week := t.ISOWeek()
		return strconv.Itoa(week), true
	case 'y':
		return fmt.Sprintf("%02d", t.Year()%100), true
	case 'Y':
		return fmt.Sprintf("%04d", t.Year()), true
	case 'z':
		return strconv.Itoa(t.YearDay()), true
	case 'Z':
		_, offset := t.Zone()
		return strconv.Itoa(offset), true
	}
	return "", false
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

// shortTime is the hour on the 12-hour clock with the minutes left off when zero
func shortTime(t time.Time) string {
	if t.Minute() == 0 {
		return strconv.Itoa(hour12(t))
	}
	return fmt.Sprintf("%d:%02d", hour12(t), t.Minute())
}

func isoFormat(t time.Time) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/1000 != 0 {
		layout += ".000000"
	}
	return t.Format(layout + "-07:00")
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
