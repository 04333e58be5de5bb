// Package fileutil locates manual-page sources on disk.
//
// Pages follow the groff tree layout: one file per page, named
// <utility>.<section>, directly under the page directory. FindPages lists the
// pages of the requested sections, sorted by utility and then by the order the
// sections were given in.
//
//	pages, err := fileutil.FindPages("groff", fileutil.PageOptions{
//	    Sections: []string{"1", "8"},
//	})
//	for _, p := range pages.Pages {
//	    fmt.Println(p.Utility, p.Section, p.Path)
//	}
//
// Subdirectories and hidden files are skipped. Entries that cannot be
// inspected are collected in Errors and the listing continues.
package fileutil
