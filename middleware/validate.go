package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// ValidateJSON decodes the JSON payload into dst and runs the tag validator.
// On failure it writes the 400 response itself and returns the error so the
// handler can simply return.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Érvénytelen kérés formátum"})
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Hibás adatok", Data: err.Error()})
		return err
	}
	return nil
}
