package main

import (
	"fmt"
	"strings"
)

// csvFlag collects comma separated values; repeating the flag appends.
type csvFlag []string

func (f *csvFlag) String() string { return strings.Join(*f, ",") }

func (f *csvFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

// filterFlag collects attr=value pairs into a value filter.
type filterFlag map[string][]string

func (f *filterFlag) String() string {
	var parts []string
	for attr, values := range *f {
		for _, v := range values {
			parts = append(parts, attr+"="+v)
		}
	}
	return strings.Join(parts, ",")
}

func (f *filterFlag) Set(value string) error {
	attr, v, ok := strings.Cut(value, "=")
	if !ok || attr == "" {
		return fmt.Errorf("want attr=value, got %q", value)
	}
	if *f == nil {
		*f = filterFlag{}
	}
	(*f)[attr] = append((*f)[attr], v)
	return nil
}

// multiFlag collects every occurrence of a repeatable flag.
type multiFlag []string

func (f *multiFlag) String() string { return strings.Join(*f, " ") }

func (f *multiFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}
