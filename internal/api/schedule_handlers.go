package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/medsched/clinic-scheduling/internal/scheduling"
)

func resolveSlotsHandler(resolver *scheduling.SlotResolver, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}

		q := r.URL.Query()
		from, err := time.ParseInLocation("2006-01-02", q.Get("from"), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must look like 2006-01-02")
			return
		}
		to, err := time.ParseInLocation("2006-01-02", q.Get("to"), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must look like 2006-01-02")
			return
		}

		override := 0
		if s := q.Get("duration"); s != "" {
			override, err = strconv.Atoi(s)
			if err != nil || override <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
				return
			}
		}

		days, err := resolver.ResolveSlots(r.Context(), physicianID, from, to, override)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDayScheduleResponses(days))
	}
}

func decodeAvailabilityParams(w http.ResponseWriter, r *http.Request) (scheduling.AvailabilityParams, bool) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return scheduling.AvailabilityParams{}, false
	}

	start, err := parseClock(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
		return scheduling.AvailabilityParams{}, false
	}
	end, err := parseClock(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
		return scheduling.AvailabilityParams{}, false
	}

	return scheduling.AvailabilityParams{
		Weekday:     time.Weekday(req.Weekday),
		StartMinute: start,
		EndMinute:   end,
		SlotMinutes: req.SlotMinutes,
	}, true
}

func addAvailabilityHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}

		params, ok := decodeAvailabilityParams(w, r)
		if !ok {
			return
		}
		params.PhysicianID = physicianID

		av, err := mgr.AddAvailability(r.Context(), params)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAvailabilityResponse(av))
	}
}

func updateAvailabilityHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}
		availabilityID, ok := parseIDParam(w, r, "availabilityID")
		if !ok {
			return
		}

		params, ok := decodeAvailabilityParams(w, r)
		if !ok {
			return
		}
		params.PhysicianID = physicianID

		av, err := mgr.UpdateAvailability(r.Context(), availabilityID, params)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
	}
}

func removeAvailabilityHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}
		availabilityID, ok := parseIDParam(w, r, "availabilityID")
		if !ok {
			return
		}

		if err := mgr.RemoveAvailability(r.Context(), physicianID, availabilityID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listAvailabilityHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}

		avs, err := mgr.ListAvailability(r.Context(), physicianID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]AvailabilityResponse, 0, len(avs))
		for i := range avs {
			out = append(out, toAvailabilityResponse(&avs[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodeBlockParams(w http.ResponseWriter, r *http.Request) (scheduling.BlockParams, bool) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return scheduling.BlockParams{}, false
	}

	return scheduling.BlockParams{
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Reason:  req.Reason,
	}, true
}

func addBlockHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}

		params, ok := decodeBlockParams(w, r)
		if !ok {
			return
		}
		params.PhysicianID = physicianID

		b, err := mgr.AddBlock(r.Context(), params)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBlockResponse(b))
	}
}

func updateBlockHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}
		blockID, ok := parseIDParam(w, r, "blockID")
		if !ok {
			return
		}

		params, ok := decodeBlockParams(w, r)
		if !ok {
			return
		}
		params.PhysicianID = physicianID

		b, err := mgr.UpdateBlock(r.Context(), blockID, params)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBlockResponse(b))
	}
}

func removeBlockHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}
		blockID, ok := parseIDParam(w, r, "blockID")
		if !ok {
			return
		}

		if err := mgr.RemoveBlock(r.Context(), physicianID, blockID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlocksHandler(mgr *scheduling.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := parseIDParam(w, r, "physicianID")
		if !ok {
			return
		}

		blocks, err := mgr.ListBlocks(r.Context(), physicianID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]BlockResponse, 0, len(blocks))
		for i := range blocks {
			out = append(out, toBlockResponse(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
