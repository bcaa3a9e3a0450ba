package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/middlewares"
	"github.com/yeremiapane/billiard-pos/models"
)

func setupUserRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	userCtrl := controllers.NewUserController(db)
	router.POST("/register", userCtrl.Register)
	router.POST("/login", userCtrl.Login)
	router.GET("/profile", middlewares.AuthMiddleware(), userCtrl.GetProfile)
	router.POST("/logout", middlewares.AuthMiddleware(), userCtrl.Logout)
	router.POST("/admin/users", userCtrl.CreateUser)
	router.GET("/admin/users", userCtrl.GetAllUsers)
	return router
}

func TestRegisterLoginProfile(t *testing.T) {
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/register", gin.H{
		"name": "Sari", "email": "Sari@Example.com", "password": "secret1", "role": "admin",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var stored models.User
	require.NoError(t, db.Where("email = ?", "sari@example.com").First(&stored).Error)
	assert.Equal(t, models.RoleCustomer, stored.Role)
	assert.NotEqual(t, "secret1", stored.Password)

	w = doJSON(t, router, "POST", "/register", gin.H{"name": "Sari", "email": "sari@example.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "POST", "/login", gin.H{"email": "sari@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, "POST", "/login", gin.H{"email": "SARI@example.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, models.RoleCustomer, data["user_role"])
	header := http.Header{"Authorization": []string{"Bearer " + data["token"].(string)}}

	w = doJSON(t, router, "GET", "/profile", nil, header)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Sari", profile["name"])
	assert.NotContains(t, profile, "password")

	w = doJSON(t, router, "POST", "/logout", nil, header)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, "GET", "/profile", nil, header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateUserRoles(t *testing.T) {
	db := setupTestDB(t)
	router := setupUserRouter(db)

	w := doJSON(t, router, "POST", "/admin/users", gin.H{"name": "Chef", "email": "chef@example.com", "password": "secret1", "role": "CHEF"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/admin/users", gin.H{"name": "X", "email": "x@example.com", "password": "secret1", "role": "owner"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/admin/users", gin.H{"name": "Y", "email": "not-an-email", "password": "secret1", "role": "staff"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/admin/users?role=chef", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode(t, w)["data"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleChef, users[0].(map[string]interface{})["role"])
}
