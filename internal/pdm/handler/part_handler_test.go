package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/testutil"
	"github.com/gin-gonic/gin"
)

func setupPartTest(t *testing.T) (*testutil.TestEnv, *gin.Engine) {
	t.Helper()
	env := testutil.Setup(t)
	router := testutil.SetupRouter()
	h := NewHandlers(env.Services)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/categories", h.Part.Categories)
	api.POST("/parts", h.Part.Create)
	api.GET("/parts", h.Part.List)
	api.GET("/parts/:id", h.Part.Get)
	api.PUT("/parts/:id", h.Part.Update)
	api.POST("/parts/:id/status", h.Part.ChangeStatus)
	api.GET("/parts/:id/properties", h.Part.Properties)
	api.PUT("/parts/:id/properties", h.Part.SetProperties)
	api.POST("/parts/:id/revisions", h.Revision.Create)
	api.GET("/parts/:id/revisions", h.Revision.List)
	api.POST("/relationships", h.Relationship.Add)
	api.GET("/parts/:id/relationships/children", h.Relationship.Children)
	api.GET("/parts/:id/bom/export", h.Part.ExportBOM)

	return env, router
}

func TestPartCreateAndGet(t *testing.T) {
	_, router := setupPartTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category":    "EL",
		"subcategory": "RES",
		"name":        "10k 0402 电阻",
		"description": "1% thin film",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["id"].(float64) != 1 {
		t.Errorf("Expected id 1, got %v", data["id"])
	}
	if data["status"] != "draft" {
		t.Errorf("Expected draft, got %v", data["status"])
	}

	w2 := testutil.DoRequest(router, "GET", "/api/v1/parts/1", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}

	// 未登记的编码组合
	w3 := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category":    "XX",
		"subcategory": "YY",
		"name":        "unknown",
	}, token)
	if w3.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestPartRequiresAuth(t *testing.T) {
	_, router := setupPartTest(t)
	w := testutil.DoRequest(router, "GET", "/api/v1/parts", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestPartStatusEndpoint(t *testing.T) {
	_, router := setupPartTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "EL", "subcategory": "RES", "name": "电阻",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create part: %d %s", w.Code, w.Body.String())
	}

	w2 := testutil.DoRequest(router, "POST", "/api/v1/parts/1/status",
		map[string]interface{}{"status": "in_review"}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Submit for review: %d %s", w2.Code, w2.Body.String())
	}

	// 无发布能力的用户被拒
	plainToken := testutil.GenerateTestToken("user-2", "Engineer", "eng@test.com", nil, nil)
	w3 := testutil.DoRequest(router, "POST", "/api/v1/parts/1/status",
		map[string]interface{}{"status": "released"}, plainToken)
	if w3.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w3.Code, w3.Body.String())
	}

	w4 := testutil.DoRequest(router, "POST", "/api/v1/parts/1/status",
		map[string]interface{}{"status": "released"}, token)
	if w4.Code != http.StatusOK {
		t.Fatalf("Release: %d %s", w4.Code, w4.Body.String())
	}
	resp := testutil.ParseResponse(w4)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "released" {
		t.Errorf("Expected released, got %v", data["status"])
	}
}

func TestPartProperties(t *testing.T) {
	_, router := setupPartTest(t)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "EL", "subcategory": "RES", "name": "电阻",
	}, token)

	w := testutil.DoRequest(router, "PUT", "/api/v1/parts/1/properties",
		map[string]string{"resistance": "10k", "tolerance": "1%"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Set properties: %d %s", w.Code, w.Body.String())
	}

	// 覆盖写
	w2 := testutil.DoRequest(router, "PUT", "/api/v1/parts/1/properties",
		map[string]string{"tolerance": "5%"}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Overwrite property: %d %s", w2.Code, w2.Body.String())
	}

	w3 := testutil.DoRequest(router, "GET", "/api/v1/parts/1/properties", nil, token)
	resp := testutil.ParseResponse(w3)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("Expected 2 properties, got %d", len(items))
	}
	for _, it := range items {
		prop := it.(map[string]interface{})
		if prop["key"] == "tolerance" && prop["value"] != "5%" {
			t.Errorf("tolerance = %v, want 5%%", prop["value"])
		}
	}
}

func TestBOMExportEndpoint(t *testing.T) {
	_, router := setupPartTest(t)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "AS", "subcategory": "PCBA", "name": "主板",
	}, token)
	testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "EL", "subcategory": "RES", "name": "电阻",
	}, token)
	w := testutil.DoRequest(router, "POST", "/api/v1/relationships", map[string]interface{}{
		"parent_id": 1, "child_id": 2, "kind": "assembly", "quantity": 4, "unit": "pcs",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Add relationship: %d %s", w.Code, w.Body.String())
	}

	w2 := testutil.DoRequest(router, "GET", "/api/v1/parts/1/bom/export", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Export BOM: %d %s", w2.Code, w2.Body.String())
	}
	if ct := w2.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %s", ct)
	}
	if w2.Body.Len() == 0 {
		t.Error("Empty xlsx body")
	}
}

func TestRelationshipCycleOverHTTP(t *testing.T) {
	_, router := setupPartTest(t)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "AS", "subcategory": "PCBA", "name": "主板",
	}, token)
	testutil.DoRequest(router, "POST", "/api/v1/parts", map[string]interface{}{
		"category": "EL", "subcategory": "RES", "name": "电阻",
	}, token)
	testutil.DoRequest(router, "POST", "/api/v1/relationships", map[string]interface{}{
		"parent_id": 1, "child_id": 2, "kind": "assembly", "quantity": 1,
	}, token)

	w := testutil.DoRequest(router, "POST", "/api/v1/relationships", map[string]interface{}{
		"parent_id": 2, "child_id": 1, "kind": "assembly", "quantity": 1,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for cycle, got %d: %s", w.Code, w.Body.String())
	}
}
