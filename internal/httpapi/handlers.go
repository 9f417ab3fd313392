package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkin/internal/attendance"
	"checkin/internal/audit"
	"checkin/internal/auth"
	"checkin/internal/model"
	"checkin/internal/options"
	"checkin/internal/orgday"
)

func editor(c *gin.Context) string {
	id, _ := auth.IdentityFrom(c)
	return id.Email
}

func (s *server) capabilities(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	caps, _ := auth.CapabilitiesFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"email":        id.Email,
		"privileged":   s.accounts.Gate().IsPrivileged(id.Email),
		"capabilities": caps,
	})
}

func (s *server) listOptions(c *gin.Context) {
	set, err := s.att.Options(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *server) replaceOptions(c *gin.Context) {
	if s.options == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "option sets are read-only in this deployment"})
		return
	}
	field := c.Param("field")
	if !options.IsField(field) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown option field", "field": field})
		return
	}
	var req struct {
		Values []string `json:"values" binding:"required,min=1,dive,required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values := make([]string, 0, len(req.Values))
	for _, v := range req.Values {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if err := s.options.Replace(c.Request.Context(), field, values); err != nil {
		s.fail(c, err)
		return
	}
	s.audit(c, audit.New(audit.OptionsReplaced, editor(c), "", s.now(), map[string]any{
		"field":  field,
		"values": values,
	}))
	set, err := s.options.Current(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *server) validate(c *gin.Context) {
	var cand model.Candidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.att.Validate(c.Request.Context(), cand)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) submit(c *gin.Context) {
	var cand model.Candidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	policy := s.policy
	if v := c.Query("policy"); v != "" {
		p, err := attendance.ParsePolicy(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		policy = p
	}
	res, err := s.att.Submit(c.Request.Context(), cand, editor(c), policy)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Record != nil {
		setETag(c, res.NewUpdateCount)
	}
	c.JSON(outcomeStatus(res.Outcome), res)
}

type editRequest struct {
	attendance.Patch
	ExpectedUpdateCount *int `json:"expectedUpdateCount,omitempty"`
}

func (s *server) edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	expected, err := expectedCount(c, req.ExpectedUpdateCount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.att.Edit(c.Request.Context(), c.Param("id"), req.Patch, editor(c), expected)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Record != nil {
		setETag(c, res.NewUpdateCount)
	}
	c.JSON(outcomeStatus(res.Outcome), res)
}

func (s *server) setStatus(c *gin.Context) {
	var req struct {
		Status              string `json:"status" binding:"required"`
		AbsentReason        string `json:"absentReason"`
		ExpectedUpdateCount *int   `json:"expectedUpdateCount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	expected, err := expectedCount(c, req.ExpectedUpdateCount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.att.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.AbsentReason, editor(c), expected)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Record != nil {
		setETag(c, res.NewUpdateCount)
	}
	c.JSON(outcomeStatus(res.Outcome), res)
}

func (s *server) recordHistory(c *gin.Context) {
	events, err := s.history.ForRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"recordId": c.Param("id"), "events": events})
}

func (s *server) duplicates(c *gin.Context) {
	nid := c.Query("nationalId")
	if nid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nationalId required"})
		return
	}
	var asOf *orgday.Day
	switch scope := c.DefaultQuery("scope", "today"); {
	case c.Query("day") != "":
		d, err := orgday.ParseDay(c.Query("day"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		asOf = &d
	case scope == "today":
		d := s.att.Calendar().Today(s.now())
		asOf = &d
	case scope == "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be today or all"})
		return
	}
	res, err := s.att.Detector().CheckDuplicate(c.Request.Context(), nid, asOf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) similar(c *gin.Context) {
	res, err := s.att.Detector().CheckSimilarName(c.Request.Context(), c.Query("fullName"), c.Query("excludeNationalId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) scan(c *gin.Context) {
	var req struct {
		NationalID string `json:"nationalId" binding:"required"`
		RecordID   string `json:"recordId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.att.Scan(c.Request.Context(), req.NationalID, req.RecordID, editor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Record != nil {
		setETag(c, res.NewUpdateCount)
	}
	c.JSON(outcomeStatus(res.Outcome), res)
}

func (s *server) report(c *gin.Context) {
	today := s.att.Calendar().Today(s.now())
	from, to := today, today
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = orgday.ParseDay(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = orgday.ParseDay(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rep, err := s.att.Report(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *server) setRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.accounts.SetRole(c.Request.Context(), editor(c), c.Param("id"), req.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *server) deactivate(c *gin.Context) {
	u, err := s.accounts.Deactivate(c.Request.Context(), editor(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *server) reconcile(c *gin.Context) {
	out, err := s.accounts.ReconcileAll(c.Request.Context(), editor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrected": out})
}

func (s *server) audit(c *gin.Context, evt audit.Event) {
	if err := s.publisher.Publish(c.Request.Context(), evt); err != nil {
		s.log.Warn("audit publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

// expectedCount prefers an If-Match header over the body field.
func expectedCount(c *gin.Context, body *int) (*int, error) {
	h := strings.TrimSpace(c.GetHeader("If-Match"))
	if h == "" {
		return body, nil
	}
	h = strings.Trim(strings.TrimPrefix(h, "W/"), `"`)
	n, err := strconv.Atoi(h)
	if err != nil || n < 0 {
		return nil, errBadIfMatch
	}
	return &n, nil
}

func setETag(c *gin.Context, count int) {
	c.Header("ETag", `"`+strconv.Itoa(count)+`"`)
}
