package server

import "tomgalvin.uk/qlprint/internal/printer"

type statusResponse struct {
	MediaWidth    uint8    `json:"mediaWidth"`
	MediaLength   uint8    `json:"mediaLength"`
	MediaType     string   `json:"mediaType"`
	PrintableDots *uint16  `json:"printableDots"`
	StatusType    string   `json:"statusType"`
	Phase         string   `json:"phase"`
	Errors        []string `json:"errors"`
}

func mapStatus(st printer.Status) statusResponse {
	res := statusResponse{
		MediaWidth:  st.MediaWidth,
		MediaLength: st.MediaLength,
		MediaType:   st.MediaType.String(),
		StatusType:  st.StatusType.String(),
		Phase:       st.PhaseState.String(),
		Errors:      st.ErrorNames(),
	}
	if dots, ok := st.PixelWidth(); ok {
		res.PrintableDots = &dots
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res
}
