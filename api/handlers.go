package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

// StoreQuery 存储查询请求，Consumer 为空时只按服务查询
type StoreQuery struct {
	Consumer *model.System `json:"consumer,omitempty"`
	Service  model.Service `json:"service"`
}

func (s *Server) orchestrate(c *gin.Context) {
	var form model.ServiceRequestForm
	if err := c.ShouldBindJSON(&form); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	resp, err := s.orchestrator.Orchestrate(c.Request.Context(), &form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) allEntries(c *gin.Context) {
	if s.opts.store == nil {
		s.fail(c, ErrStoreDisabled)
		return
	}
	entries, err := s.opts.store.GetAllEntries(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

func (s *Server) defaultEntries(c *gin.Context) {
	if s.opts.store == nil {
		s.fail(c, ErrStoreDisabled)
		return
	}
	var consumer model.System
	if err := c.ShouldBindJSON(&consumer); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if err := consumer.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	entries, err := s.opts.store.GetDefaultEntries(c.Request.Context(), consumer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

func (s *Server) queryEntries(c *gin.Context) {
	if s.opts.store == nil {
		s.fail(c, ErrStoreDisabled)
		return
	}
	var q StoreQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if err := q.Service.Validate(); err != nil {
		s.fail(c, err)
		return
	}

	var (
		entries []model.OrchestrationStoreEntry
		err     error
	)
	if q.Consumer == nil {
		entries, err = s.opts.store.GetEntriesForService(c.Request.Context(), q.Service)
	} else {
		if err := q.Consumer.Validate(); err != nil {
			s.fail(c, err)
			return
		}
		entries, err = s.opts.store.GetEntries(c.Request.Context(), *q.Consumer, q.Service)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

func (s *Server) saveEntries(c *gin.Context) {
	if s.opts.store == nil {
		s.fail(c, ErrStoreDisabled)
		return
	}
	var entries []model.OrchestrationStoreEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if len(entries) == 0 {
		s.fail(c, xerrors.Wrap(xerrors.ErrInvalidInput, "at least one entry is required"))
		return
	}
	saved, err := s.opts.store.Save(c.Request.Context(), entries...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": saved, "count": len(saved)})
}

func (s *Server) deleteEntry(c *gin.Context) {
	if s.opts.store == nil {
		s.fail(c, ErrStoreDisabled)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		s.fail(c, xerrors.Wrapf(xerrors.ErrInvalidInput, "invalid entry id %q", c.Param("id")))
		return
	}
	if err := s.opts.store.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) gsd(c *gin.Context) {
	var req model.GSDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	res, err := s.orchestrator.HandleGSD(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) icn(c *gin.Context) {
	var req model.ICNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	res, err := s.orchestrator.HandleICN(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
