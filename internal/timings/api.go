package timings

// apiResponse models the AlAdhan /timings response.
type apiResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings map[string]string `json:"timings"`
		Date    struct {
			Readable string `json:"readable"`
			Hijri    struct {
				Date  string `json:"date"`
				Day   string `json:"day"`
				Year  string `json:"year"`
				Month struct {
					Number int    `json:"number"`
					En     string `json:"en"`
				} `json:"month"`
			} `json:"hijri"`
		} `json:"date"`
	} `json:"data"`
}

// hijri renders the Hijri date as "DD Month YYYY AH", or "" when incomplete.
func (r *apiResponse) hijri() string {
	h := r.Data.Date.Hijri
	if h.Day == "" || h.Month.En == "" || h.Year == "" {
		return ""
	}
	return h.Day + " " + h.Month.En + " " + h.Year + " AH"
}
