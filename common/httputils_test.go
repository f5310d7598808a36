package common_test

import (
	"net/http"
	"net/http/httptest"
	"permflow/bizerror"
	"permflow/common"
	"permflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("HttpUtils", func() {
	var router *gin.Engine

	BeforeEach(func() {
		router = gin.New()
		router.Use(bizerror.ErrorHandling())
		router.GET("/things/:id", func(c *gin.Context) {
			id := common.BindingPathID(c, "id")
			ids := common.BindingQueryIDs(c, "roleId")
			c.JSON(http.StatusOK, gin.H{"id": id, "roleIds": ids})
		})
	})

	Describe("BindingPathID", func() {
		It("should parse path and query ids", func() {
			req := httptest.NewRequest(http.MethodGet, "/things/123?roleId=1&roleId=2", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"id":"123","roleIds":["1","2"]}`))
		})

		It("should reject malformed ids", func() {
			req := httptest.NewRequest(http.MethodGet, "/things/abc", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(ContainSubstring(`"code":"common.bad_param"`))

			req = httptest.NewRequest(http.MethodGet, "/things/1?roleId=x", nil)
			status, _, _ = testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DefaultFieldsHook", func() {
		It("should stamp service fields", func() {
			hook := &common.DefaultFieldsHook{ServiceInstance: "host-1"}
			entry := logrus.NewEntry(logrus.New())
			Expect(hook.Fire(entry)).To(BeNil())
			Expect(entry.Data["serviceName"]).To(Equal("permflow"))
			Expect(entry.Data["serviceInstance"]).To(Equal("host-1"))
			Expect(hook.Levels()).To(Equal(logrus.AllLevels))
		})
	})
})
