package screener

// PageButton is one entry of the pager. Gap entries render as an ellipsis.
type PageButton struct {
	Number int  `json:"number,omitempty"`
	Gap    bool `json:"gap,omitempty"`
	Active bool `json:"active,omitempty"`
}

// PageControls is the pager strip under the table.
type PageControls struct {
	Buttons []PageButton `json:"buttons"`
	HasPrev bool         `json:"has_prev"`
	HasNext bool         `json:"has_next"`
}

// BuildPageControls lays out the pager. With seven pages or fewer every page
// gets a button; beyond that the first two, the current page with its
// neighbours, and the last two are shown with gaps between them.
func BuildPageControls(current, pages int) PageControls {
	if pages <= 1 {
		return PageControls{}
	}

	var nums []int // 0 marks a gap
	if pages <= 7 {
		for i := 1; i <= pages; i++ {
			nums = append(nums, i)
		}
	} else {
		nums = []int{1, 2}
		if current > 4 {
			nums = append(nums, 0)
		}
		for i := max(3, current-1); i <= min(pages-2, current+1); i++ {
			nums = append(nums, i)
		}
		if current < pages-3 {
			nums = append(nums, 0)
		}
		nums = append(nums, pages-1, pages)
	}

	pc := PageControls{
		Buttons: make([]PageButton, 0, len(nums)),
		HasPrev: current > 1,
		HasNext: current < pages,
	}
	for _, n := range nums {
		if n == 0 {
			pc.Buttons = append(pc.Buttons, PageButton{Gap: true})
			continue
		}
		pc.Buttons = append(pc.Buttons, PageButton{Number: n, Active: n == current})
	}
	return pc
}
