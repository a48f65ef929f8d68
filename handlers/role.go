// role.go - Role listing and role-assignment list diffing

package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-home-dashboard/database"
	"go-home-dashboard/logging"
	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
)

// RoleWithUsers is a role and its current members.
type RoleWithUsers struct {
	models.Role
	Users []models.User `json:"users"`
}

// AssignRoleInput is the complete new membership of a role.
type AssignRoleInput struct {
	UserIDs []uint `json:"user_ids" binding:"required"`
}

// Assignment reports what a role assignment changed.
type Assignment struct {
	Role    models.RoleName `json:"role"`
	Added   []uint          `json:"added"`
	Removed []uint          `json:"removed"`
}

// ListRoles returns the fixed roles.
func (h *Handler) ListRoles(c *gin.Context) {
	var roles []models.Role
	if err := h.DB.Order("id").Find(&roles).Error; err != nil {
		dbError(c, err)
		return
	}
	listResponse(c, roles)
}

// GetRole returns a role with its members.
func (h *Handler) GetRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var out RoleWithUsers
	if err := h.DB.First(&out.Role, id).Error; err != nil {
		fail(c, "role", id, err)
		return
	}
	if err := h.DB.Preload("Role").Where("role_id = ?", id).Order("id").Find(&out.Users).Error; err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AssignRole makes the posted id list the exact membership of a role.
// The role is addressed by name (PUT /roles/Admin/users).
func (h *Handler) AssignRole(c *gin.Context) {
	name, err := models.ParseRoleName(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var input AssignRoleInput
	if !bindJSON(c, &input) {
		return
	}
	caller, _ := middleware.CurrentUser(c)

	var result *Assignment
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = assignRole(tx, name, input.UserIDs, caller.ID)
		return err
	})
	if err != nil {
		fail(c, "role", name, err)
		return
	}
	// Logged after commit: the audit hook writes through the same pool.
	logging.Audit(caller.ID).Infof("role %s: added %v, removed %v", name, result.Added, result.Removed)
	c.JSON(http.StatusOK, result)
}

// assignRole computes and applies the membership diff inside tx.
func assignRole(tx *gorm.DB, name models.RoleName, ids []uint, callerID uint) (*Assignment, error) {
	role, err := database.RoleByName(tx, name)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var listed []models.User
	if len(wanted) > 0 {
		if err := tx.Where("id IN ?", keys(wanted)).Find(&listed).Error; err != nil {
			return nil, err
		}
	}
	if len(listed) != len(wanted) {
		found := make(map[uint]bool, len(listed))
		for _, u := range listed {
			found[u.ID] = true
		}
		var unknown []uint
		for id := range wanted {
			if !found[id] {
				unknown = append(unknown, id)
			}
		}
		sortIDs(unknown)
		return nil, newBadRequest(fmt.Sprintf("unknown user ids: %v", unknown))
	}

	var members []models.User
	if err := tx.Where("role_id = ?", role.ID).Find(&members).Error; err != nil {
		return nil, err
	}

	res := &Assignment{Role: name, Added: []uint{}, Removed: []uint{}}
	for _, u := range listed {
		if u.RoleID != role.ID {
			res.Added = append(res.Added, u.ID)
		}
	}
	for _, u := range members {
		if !wanted[u.ID] {
			res.Removed = append(res.Removed, u.ID)
		}
	}
	sortIDs(res.Added)
	sortIDs(res.Removed)

	if len(res.Removed) > 0 {
		if name == models.RoleUser {
			return nil, newBadRequest("users cannot be removed from the User role; assign them to Admin instead")
		}
		for _, id := range res.Removed {
			if id == callerID {
				return nil, newBadRequest("you cannot remove yourself from the Admin role")
			}
		}
		fallback, err := database.RoleByName(tx, models.RoleUser)
		if err != nil {
			return nil, err
		}
		if err := tx.Model(&models.User{}).Where("id IN ?", res.Removed).Update("role_id", fallback.ID).Error; err != nil {
			return nil, err
		}
	}
	if name == models.RoleUser {
		for _, id := range res.Added {
			if id == callerID {
				return nil, newBadRequest("you cannot remove yourself from the Admin role")
			}
		}
	}
	if len(res.Added) > 0 {
		if err := tx.Model(&models.User{}).Where("id IN ?", res.Added).Update("role_id", role.ID).Error; err != nil {
			return nil, err
		}
	}
	return res, nil
}

func keys(m map[uint]bool) []uint {
	out := make([]uint, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortIDs(ids []uint) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
